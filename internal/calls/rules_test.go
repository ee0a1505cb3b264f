package calls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telbill/internal/config"
	"telbill/internal/constants"
	"telbill/pkg/cel"
)

func newRules(t *testing.T, cfgs []config.IngestRuleConfig) *Rules {
	t.Helper()
	eval, err := cel.NewEvaluator()
	require.NoError(t, err)
	rules, err := NewRules(eval, cfgs)
	require.NoError(t, err)
	return rules
}

func TestRules_Defaults(t *testing.T) {
	rules := newRules(t, nil)
	assert.Equal(t, 2, rules.Len())

	ts := time.Date(2016, 2, 29, 12, 0, 0, 0, time.UTC)

	ok := rules.Check(context.Background(), Event{CallID: "1", Kind: KindStart, Timestamp: ts, Source: "99988526423", Destination: "9993468278"})
	assert.Empty(t, ok)

	bad := rules.Check(context.Background(), Event{CallID: "1", Kind: KindStart, Timestamp: ts, Source: "123", Destination: "99934682781234"})
	assert.Equal(t, map[string][]string{
		"source":      {constants.SubscriberRuleMessage},
		"destination": {constants.SubscriberRuleMessage},
	}, bad)

	stop := rules.Check(context.Background(), Event{CallID: "1", Kind: KindStop, Timestamp: ts})
	assert.Empty(t, stop)
}

func TestRules_Custom(t *testing.T) {
	rules := newRules(t, []config.IngestRuleConfig{
		{Name: "after_launch", Field: "timestamp", Expression: `timestamp >= timestamp("2016-01-01T00:00:00Z")`},
	})

	violations := rules.Check(context.Background(), Event{CallID: "1", Kind: KindStop, Timestamp: time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)})
	assert.Equal(t, map[string][]string{"timestamp": {"Rule after_launch rejected this record."}}, violations)
}

func TestNewRules_CompileError(t *testing.T) {
	eval, err := cel.NewEvaluator()
	require.NoError(t, err)

	_, err = NewRules(eval, []config.IngestRuleConfig{{Name: "broken", Expression: `source +`}})
	assert.ErrorContains(t, err, "broken")
}
