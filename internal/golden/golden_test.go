package golden

import "testing"

func TestScenariosPass(t *testing.T) {
	results, err := RunAll(Scenarios)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	for _, r := range results {
		if !r.Passed() {
			t.Errorf("%s: got %q, want %q (err=%v)", r.Scenario.Name, r.Output, r.Scenario.Expected, r.Err)
		}
	}
}

func TestShortCircuitAnd(t *testing.T) {
	out, err := Run(`{
		function boom(): Boolean := { print("called"); true };
		print(false && boom())
	}`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "false\n" {
		t.Fatalf("short-circuit && evaluated rhs: got %q", out)
	}
}

func TestShortCircuitOr(t *testing.T) {
	out, err := Run(`{
		function boom(): Boolean := { print("called"); false };
		print(true || boom())
	}`)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "true\n" {
		t.Fatalf("short-circuit || evaluated rhs: got %q", out)
	}
}
