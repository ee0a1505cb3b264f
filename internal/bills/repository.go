package bills

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"telbill/internal/constants"
	"telbill/pkg/metrics"
)

// BillStore keeps one bill per subscriber and period.
type BillStore interface {
	// AppendCall adds c to the bill of its subscriber and period, creating the
	// bill when needed. It reports false when the call was already billed.
	AppendCall(ctx context.Context, c Charge) (bool, error)
	// Get returns the bill, or an empty one when nothing was billed.
	Get(ctx context.Context, subscriber string, period Period) (Bill, error)
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection(constants.BillsCollection),
	}
}

type billDocument struct {
	Subscriber string           `bson:"subscriber"`
	Period     string           `bson:"period"`
	Calls      []chargeDocument `bson:"calls"`
	CreatedAt  time.Time        `bson:"created_at"`
	UpdatedAt  time.Time        `bson:"updated_at"`
}

type chargeDocument struct {
	CallID          string               `bson:"call_id"`
	Destination     string               `bson:"destination"`
	StartTimestamp  time.Time            `bson:"start_timestamp"`
	StopTimestamp   time.Time            `bson:"stop_timestamp"`
	DurationSeconds int64                `bson:"call_duration_seconds"`
	Price           primitive.Decimal128 `bson:"call_price"`
}

func (r *MongoRepository) AppendCall(ctx context.Context, c Charge) (appended bool, err error) {
	defer observe("append_call", time.Now(), &err)

	price, err := primitive.ParseDecimal128(c.CallPrice.String())
	if err != nil {
		return false, fmt.Errorf("failed to encode price %s: %w", c.CallPrice, err)
	}

	key := bson.M{"subscriber": c.Subscriber, "period": c.Period().Key()}
	now := time.Now().UTC()

	_, err = r.collection.UpdateOne(ctx, key,
		bson.M{"$setOnInsert": bson.M{
			"subscriber": c.Subscriber,
			"period":     c.Period().Key(),
			"calls":      bson.A{},
			"created_at": now,
			"updated_at": now,
		}},
		options.Update().SetUpsert(true),
	)
	// Two upserts racing on the unique index: the loser finds the bill
	// created by the winner.
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to create bill: %w", err)
	}

	doc := chargeDocument{
		CallID:          c.CallID,
		Destination:     c.Destination,
		StartTimestamp:  c.StartTimestamp.UTC(),
		StopTimestamp:   c.StopTimestamp.UTC(),
		DurationSeconds: int64(time.Duration(c.CallDuration) / time.Second),
		Price:           price,
	}

	filter := bson.M{
		"subscriber":    c.Subscriber,
		"period":        c.Period().Key(),
		"calls.call_id": bson.M{"$ne": c.CallID},
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$push": bson.M{"calls": doc},
		"$set":  bson.M{"updated_at": now},
	})
	if err != nil {
		return false, fmt.Errorf("failed to append call %s: %w", c.CallID, err)
	}

	return res.MatchedCount == 1, nil
}

func (r *MongoRepository) Get(ctx context.Context, subscriber string, period Period) (bill Bill, err error) {
	defer observe("get_bill", time.Now(), &err)

	bill = Bill{Subscriber: subscriber, Period: period, Calls: []Charge{}}

	var doc billDocument
	err = r.collection.FindOne(ctx, bson.M{"subscriber": subscriber, "period": period.Key()}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return bill, nil
	}
	if err != nil {
		return Bill{}, fmt.Errorf("failed to find bill: %w", err)
	}

	for _, d := range doc.Calls {
		price, err := decimal.NewFromString(d.Price.String())
		if err != nil {
			return Bill{}, fmt.Errorf("failed to decode price of call %s: %w", d.CallID, err)
		}
		bill.Calls = append(bill.Calls, Charge{
			CallID:         d.CallID,
			Subscriber:     subscriber,
			Destination:    d.Destination,
			StartTimestamp: d.StartTimestamp.UTC(),
			StopTimestamp:  d.StopTimestamp.UTC(),
			CallDuration:   Duration(time.Duration(d.DurationSeconds) * time.Second),
			CallPrice:      price,
		})
	}
	sortCalls(bill.Calls)

	return bill, nil
}

func sortCalls(calls []Charge) {
	sort.SliceStable(calls, func(i, j int) bool {
		return calls[i].StartTimestamp.Before(calls[j].StartTimestamp)
	})
}

func observe(op string, start time.Time, err *error) {
	metrics.ObserveDatabaseQuery("mongodb", op, *err, time.Since(start))
}
