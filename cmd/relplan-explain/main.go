// Command relplan-explain loads a schema declaration file, plans a preload
// expression against it, and prints the SQL each plan entry would execute.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"relplan/planner"
	"relplan/preload"
	"relplan/schema"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
)

func main() {
	if err := run(); err != nil {
		slog.Error("explain error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	schemasPath := pflag.String("schemas", "relplan.yaml", "Path to the schema declaration file")
	from := pflag.String("from", "", "Schema the preload starts from")
	preloadExpr := pflag.String("preload", "", "Comma-separated preload expression; dots nest (posts.comments,tags)")
	showVersion := pflag.Bool("version", false, "Print version and exit")
	pflag.Parse()

	if *showVersion {
		fmt.Printf("relplan-explain %s\n", Version)
		return nil
	}
	if *from == "" || *preloadExpr == "" {
		pflag.Usage()
		return fmt.Errorf("both --from and --preload are required")
	}

	ctx := context.Background()
	reg, err := schema.LoadFile(ctx, *schemasPath)
	if err != nil {
		return fmt.Errorf("failed to load schemas: %w", err)
	}

	tree, err := preload.Normalize(parseExpr(*preloadExpr), nil)
	if err != nil {
		return fmt.Errorf("failed to normalize preload: %w", err)
	}
	plan, err := preload.Expand(ctx, reg, *from, tree)
	if err != nil {
		return fmt.Errorf("failed to expand preload: %w", err)
	}

	return printPlan(reg, plan, 0)
}

// parseExpr turns "posts.comments,tags" into the list request form:
// each comma-separated element becomes a dot-nested pair chain.
func parseExpr(expr string) []any {
	var request []any
	for _, part := range strings.Split(expr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		segments := strings.Split(part, ".")
		var nested any = segments[len(segments)-1]
		for i := len(segments) - 2; i >= 0; i-- {
			nested = preload.P(segments[i], nested)
		}
		request = append(request, nested)
	}
	return request
}

func printPlan(reg *schema.Registry, plan []preload.Entry, depth int) error {
	indent := strings.Repeat("  ", depth)
	for _, entry := range plan {
		frag, err := planner.IDsFilterFragment(reg, entry.Frag.Relation, nil)
		if err != nil {
			return err
		}
		query, _, err := frag.ToSql()
		if err != nil {
			return err
		}
		shape := "direct on " + entry.Frag.OwnerKey
		if entry.Frag.IsThrough() {
			shape = "through " + strings.Join(entry.Frag.Chain, " -> ")
		}
		fmt.Printf("%s%s (%s)\n%s  %s\n", indent, entry.Name, shape, indent, query)
		if err := printPlan(reg, entry.Nested, depth+1); err != nil {
			return err
		}
	}
	return nil
}
