package telemetry

import "testing"

func TestRequestCarriesPositionalParams(t *testing.T) {
	req := Request{Method: "put_run", Params: []interface{}{"sess-1", "print 1;", "OK"}}
	if req.Method != "put_run" || len(req.Params) != 3 {
		t.Fatalf("unexpected request shape: %+v", req)
	}
}

func TestStartOnMissingExecutableFails(t *testing.T) {
	_, err := Start("/nonexistent/loxvm-telemetry-dynamodb")
	if err == nil {
		t.Fatal("expected an error starting a nonexistent executable")
	}
}
