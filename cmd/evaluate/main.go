// Command evaluate scores a single point of an objective's parameter
// space: one comma or whitespace delimited line of values on stdin,
// tab-delimited KPI values on stdout. Missing values fall back to the
// parameter defaults.
//
//	echo 1.0,-1.0 | evaluate -objective gauss2d
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode"

	"github.com/optivault/PAREX/internal/logging"
	"github.com/optivault/PAREX/internal/mco"
	"github.com/optivault/PAREX/internal/objectives"
)

func main() {
	var (
		objectiveName = flag.String("objective", "gauss2d", "objective to evaluate")
		list          = flag.Bool("list", false, "list available objectives and exit")
		logLevel      = flag.String("log-level", "error", "log level (DEBUG, INFO, WARN, ERROR)")
	)
	flag.Parse()

	logger := logging.New(logging.ParseLevel(*logLevel), os.Stderr)
	catalog := objectives.DefaultCatalog()

	if *list {
		for _, name := range catalog.Names() {
			fmt.Println(name)
		}
		return
	}

	prob, err := catalog.Get(*objectiveName)
	if err != nil {
		logger.Fatal("Unknown objective", map[string]interface{}{"error": err.Error()})
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Fatal("Reading stdin", map[string]interface{}{"error": err.Error()})
	}

	args := assembleArgs(prob.Params, splitLine(line))
	logger.Debug("Evaluating point", map[string]interface{}{
		"objective": prob.Name,
		"args":      args,
	})

	kpis, err := prob.Evaluate(args)
	if err != nil {
		logger.Fatal("Evaluation failed", map[string]interface{}{"error": err.Error()})
	}

	fmt.Println(formatKPIs(kpis))
}

// splitLine breaks an input line on commas and whitespace.
func splitLine(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})
}

// assembleArgs builds the positional argument list for an objective,
// starting from each parameter's default and overriding it with the
// matching stdin token when one is present and converts.
func assembleArgs(params []mco.Param, tokens []string) []interface{} {
	args := make([]interface{}, len(params))
	for i, p := range params {
		v := p.Default()
		if i < len(tokens) {
			v = convertToken(tokens[i], v)
		}
		args[i] = v
	}
	return args
}

// convertToken coerces a token to the default's type. A token that does
// not convert leaves the default in place.
func convertToken(token string, def interface{}) interface{} {
	switch def.(type) {
	case float64:
		if f, err := strconv.ParseFloat(token, 64); err == nil {
			return f
		}
	case int:
		if n, err := strconv.Atoi(token); err == nil {
			return n
		}
	case bool:
		if b, err := strconv.ParseBool(token); err == nil {
			return b
		}
	case string:
		return token
	}
	return def
}

// formatKPIs renders KPI values as one tab-delimited line.
func formatKPIs(values []float64) string {
	fields := make([]string, len(values))
	for i, v := range values {
		fields[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(fields, "\t")
}
