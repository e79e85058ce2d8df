// Command labrules classifies one lab panel.
//
//	labrules <test-id> <json-values>
//
// The result is printed to stdout as a single JSON line. An unknown test id prints
// {"error": "Unknown lab test"} and exits 0; any other failure exits 1 with nothing on
// stdout.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/liamcoop/labrules/internal/logger"
	"github.com/liamcoop/labrules/rules"
)

func main() {
	logger.Init()

	if err := run(os.Args[1:], os.Stdout); err != nil {
		logger.Fatal("evaluation failed", "error", err)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: labrules <test-id> <json-values>, got %d argument(s)", len(args))
	}

	raw, err := decodeJSON(args[1])
	if err != nil {
		return err
	}

	testID, err := parseTestID(args[0])
	if err != nil {
		return err
	}

	engine, err := rules.NewDefaultEngine()
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	// Unknown ids answer the sentinel whatever the values hold.
	if _, err := engine.Panel(rules.TestKind(testID)); err != nil {
		logger.Debug("unknown lab test", "test_id", args[0])
		return rules.WriteUnknownTest(stdout)
	}

	values, ok := raw.(map[string]any)
	if !ok || values == nil {
		return fmt.Errorf("values JSON must be an object, got %T", raw)
	}

	result, err := engine.Evaluate(testID, rules.Measurements(values))
	if err != nil {
		return err
	}

	logger.Debug("lab test evaluated", "test_id", testID, "keys", result.Keys(), "omitted", result.OmittedKeys())
	return rules.WriteResult(stdout, result)
}

func decodeJSON(raw string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid values JSON: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid values JSON: unexpected data after value")
	}
	return v, nil
}

// parseTestID accepts surrounding whitespace, a sign and single underscores between
// digits. Ids too large for an int are returned as 0, which no panel uses.
func parseTestID(s string) (int, error) {
	trimmed := strings.TrimSpace(s)
	digits := strings.TrimLeft(trimmed, "+-")
	if len(trimmed)-len(digits) > 1 || digits == "" ||
		strings.HasPrefix(digits, "_") || strings.HasSuffix(digits, "_") || strings.Contains(digits, "__") {
		return 0, fmt.Errorf("invalid test id %q", s)
	}

	id, err := strconv.Atoi(strings.ReplaceAll(trimmed, "_", ""))
	if errors.Is(err, strconv.ErrRange) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("invalid test id %q: %w", s, err)
	}
	return id, nil
}
