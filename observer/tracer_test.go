package observer

import (
	"context"
	"testing"

	"github.com/nevindra/conclave"

	"go.opentelemetry.io/otel/attribute"
)

func TestToOTELAttr(t *testing.T) {
	cases := []struct {
		attr conclave.SpanAttr
		want attribute.KeyValue
	}{
		{conclave.StringAttr("k", "v"), attribute.String("k", "v")},
		{conclave.IntAttr("n", 3), attribute.Int("n", 3)},
		{conclave.BoolAttr("b", true), attribute.Bool("b", true)},
		{conclave.SpanAttr{Key: "f", Value: 1.5}, attribute.Float64("f", 1.5)},
		{conclave.SpanAttr{Key: "other", Value: []int{1}}, attribute.String("other", "[1]")},
	}
	for _, tc := range cases {
		if got := toOTELAttr(tc.attr); got != tc.want {
			t.Errorf("toOTELAttr(%+v) = %+v, want %+v", tc.attr, got, tc.want)
		}
	}
}

func TestTracerNoopWithoutInit(t *testing.T) {
	// Without Init the global provider is a no-op; spans must still be safe.
	tr := NewTracer()
	ctx, span := tr.Start(context.Background(), "debate.run", conclave.IntAttr("round", 1))
	if ctx == nil || span == nil {
		t.Fatal("nil ctx or span")
	}
	span.SetAttr(conclave.StringAttr("agent.name", "arch"))
	span.Event("phase", conclave.StringAttr("phase", "proposal"))
	span.End()
}
