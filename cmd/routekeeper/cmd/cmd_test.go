package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const cardsProgram = `{
  "default_selection": {"type": "priority", "data": ["adyen"]},
  "rules": [{
    "name": "cards",
    "connector_selection": {"type": "priority", "data": ["stripe", "checkout"]},
    "statements": [{"condition": [
      {"lhs": "payment_method", "comparison": "equal", "value": {"type": "enum_variant", "value": "card"}},
      {"lhs": "amount", "comparison": "greater_than", "value": {"type": "number", "value": 1000}}
    ]}]
  }]
}`

// The rule requires a card network on a wallet payment, which the built-in
// constraints rule out.
const walletNetworkProgram = `{
  "default_selection": {"type": "priority", "data": ["adyen"]},
  "rules": [{
    "name": "wallet_visa",
    "connector_selection": {"type": "priority", "data": ["stripe"]},
    "statements": [{"condition": [
      {"lhs": "payment_method", "comparison": "equal", "value": {"type": "enum_variant", "value": "wallet"}},
      {"lhs": "card_network", "comparison": "equal", "value": {"type": "enum_variant", "value": "Visa"}}
    ]}]
  }]
}`

const cardInput = `{"payment": {"amount": 5000}, "payment_method": {"payment_method": "card"}}`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestProgramLifecycle(t *testing.T) {
	dir := t.TempDir()
	dbFlag := "--db-url=sqlite://" + filepath.Join(dir, "cli.db")
	programFile := writeFile(t, dir, "cards.json", cardsProgram)
	inputFile := writeFile(t, dir, "input.json", cardInput)

	if _, err := run(t, "migrate", dbFlag); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	out, err := run(t, "program", "save", dbFlag, "--name", "cards v1", programFile)
	if err != nil {
		t.Fatalf("program save: %v", err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		t.Fatal("program save printed no id")
	}

	out, err = run(t, "program", "list", dbFlag)
	if err != nil {
		t.Fatalf("program list: %v", err)
	}
	if !strings.Contains(out, id) || !strings.Contains(out, "cards v1") {
		t.Errorf("program list output missing program:\n%s", out)
	}

	if _, err := run(t, "program", "activate", dbFlag, id); err != nil {
		t.Fatalf("program activate: %v", err)
	}

	out, err = run(t, "evaluate", dbFlag, "--input", inputFile)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	var resp structpb.Struct
	if err := protojson.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("evaluate output is not JSON: %v\n%s", err, out)
	}
	fields := resp.GetFields()
	if got := fields["rule_name"].GetStringValue(); got != "cards" {
		t.Errorf("rule_name = %q, want cards", got)
	}
	if got := fields["program_id"].GetStringValue(); got != id {
		t.Errorf("program_id = %q, want %s", got, id)
	}
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, "analyze", writeFile(t, dir, "cards.json", cardsProgram))
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !strings.Contains(out, "rules: 1, paths: 1") {
		t.Errorf("analyze output = %q", out)
	}

	bad := writeFile(t, dir, "wallet.json", walletNetworkProgram)
	out, err = run(t, "analyze", bad, "--strict=false")
	if err != nil {
		t.Fatalf("analyze (advisory): %v", err)
	}
	if !strings.Contains(out, "wallet_visa") {
		t.Errorf("analyze output does not name the failing rule:\n%s", out)
	}
	if _, err := run(t, "analyze", bad, "--strict"); err == nil {
		t.Error("analyze --strict accepted an unsatisfiable rule")
	}
}
