package bills

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"telbill/internal/constants"
)

// Duration renders as hours, minutes and seconds, e.g. 0h8m0s.
type Duration time.Duration

func (d Duration) String() string {
	total := int64(time.Duration(d) / time.Second)
	return fmt.Sprintf("%dh%dm%ds", total/3600, total%3600/60, total%60)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Charge is a priced call, the result of the bill stage and the payload it
// publishes.
type Charge struct {
	CallID         string          `json:"call_id"`
	Subscriber     string          `json:"subscriber"`
	Destination    string          `json:"destination"`
	StartTimestamp time.Time       `json:"start_timestamp"`
	StopTimestamp  time.Time       `json:"stop_timestamp"`
	CallDuration   Duration        `json:"call_duration"`
	CallPrice      decimal.Decimal `json:"call_price"`
}

func (c Charge) Period() Period {
	return PeriodOf(c.StartTimestamp)
}

// Bill is every call a subscriber started in one period, oldest first.
type Bill struct {
	Subscriber string
	Period     Period
	Calls      []Charge
}

type LineItem struct {
	Destination   string `json:"destination"`
	CallStartDate string `json:"call_start_date"`
	CallStartTime string `json:"call_start_time"`
	CallDuration  string `json:"call_duration"`
	CallPrice     string `json:"call_price"`
}

type BillResponse struct {
	Subscriber string     `json:"subscriber"`
	Period     string     `json:"period"`
	Calls      []LineItem `json:"calls"`
}

func NewBillResponse(b Bill) BillResponse {
	resp := BillResponse{
		Subscriber: b.Subscriber,
		Period:     b.Period.String(),
		Calls:      make([]LineItem, 0, len(b.Calls)),
	}
	for _, c := range b.Calls {
		start := c.StartTimestamp.UTC()
		resp.Calls = append(resp.Calls, LineItem{
			Destination:   c.Destination,
			CallStartDate: start.Format(constants.CallDateLayout),
			CallStartTime: start.Format(constants.CallTimeLayout),
			CallDuration:  c.CallDuration.String(),
			CallPrice:     c.CallPrice.StringFixed(2),
		})
	}
	return resp
}
