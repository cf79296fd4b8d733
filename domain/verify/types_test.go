package verify

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestScoreResult_UndefinedSurvivesJSON(t *testing.T) {
	in := ScoreResult{Metric: "far", Scope: "all", Value: Undefined(), N: 10}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"value":null`) {
		t.Fatalf("undefined score should serialize as null: %s", data)
	}

	var out ScoreResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Defined() {
		t.Fatalf("undefined state lost in round trip: %+v", out)
	}
	if out.Metric != "far" || out.N != 10 {
		t.Fatalf("fields lost: %+v", out)
	}
}

func TestScoreResult_DefinedJSON(t *testing.T) {
	threshold := 10.0
	in := ScoreResult{
		Metric:    "pod",
		Scope:     "all",
		Threshold: &threshold,
		Value:     0.8,
		CI:        &ConfidenceInterval{Lower: 0.7, Upper: 0.9, Level: 0.95},
		N:         50,
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out ScoreResult
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Value != 0.8 || out.Threshold == nil || *out.Threshold != 10 {
		t.Fatalf("value or threshold lost: %+v", out)
	}
	if out.CI == nil || out.CI.Lower != 0.7 || out.CI.Level != 0.95 {
		t.Fatalf("interval lost: %+v", out.CI)
	}
}

func TestUnitKey_String(t *testing.T) {
	key := UnitKey{Space: "osl"}
	s := key.String()
	if !strings.HasPrefix(s, "osl|") {
		t.Fatalf("unexpected key form: %q", s)
	}
}
