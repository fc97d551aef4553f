package gcp

import "testing"

func TestClientOptionsFromEnv(t *testing.T) {
	t.Setenv("STORAGE_EMULATOR_HOST", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if got := ClientOptionsFromEnv(); got != nil {
		t.Fatalf("no env: want nil got=%d options", len(got))
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/secrets/sa.json")
	if got := ClientOptionsFromEnv(); len(got) != 1 {
		t.Fatalf("credentials file: want=1 got=%d", len(got))
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", `{"type":"service_account"}`)
	if got := ClientOptionsFromEnv(); len(got) != 1 {
		t.Fatalf("credentials json: want=1 got=%d", len(got))
	}

	t.Setenv("STORAGE_EMULATOR_HOST", "localhost:4443")
	if got := ClientOptionsFromEnv(); len(got) != 2 {
		t.Fatalf("emulator: want=2 got=%d", len(got))
	}
}
