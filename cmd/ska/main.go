// Command ska runs a one-shot analysis over CSV exports and prints a
// ranking report. Each file is one entity's dataset unless -entity-col
// names a column holding the entity, in which case a single file is
// split by that column.
package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/manfullwel/ska/internal/history"
	"github.com/manfullwel/ska/internal/normalize"
	"github.com/manfullwel/ska/internal/pipeline"
)

func main() {
	group := flag.String("group", "default", "group name for the analyzed entities")
	entityCol := flag.String("entity-col", "", "column holding the entity name (single-file mode)")
	dbPath := flag.String("db", "", "sqlite history database (default: in-memory, no persistence)")
	historyLimit := flag.Int("history", 10, "snapshots retained per entity")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ska [flags] file.csv [file.csv ...]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx := context.Background()

	store, err := openStore(ctx, *dbPath)
	if err != nil {
		log.Fatalf("opening history store: %v", err)
	}

	datasets, err := loadDatasets(flag.Args(), *group, *entityCol)
	if err != nil {
		log.Fatalf("loading datasets: %v", err)
	}

	p := pipeline.New(store, nil, nil, pipeline.Options{HistoryLimit: *historyLimit})
	result, err := p.Run(ctx, datasets)
	if err != nil {
		log.Fatalf("analysis failed: %v", err)
	}

	printReport(result)
	if len(result.Failed) > 0 {
		os.Exit(1)
	}
}

func openStore(ctx context.Context, path string) (history.Store, error) {
	if path == "" {
		return history.NewMemoryStore(), nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := history.NewSQLiteStore(db)
	if err := store.CreateSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func loadDatasets(files []string, group, entityCol string) ([]pipeline.Dataset, error) {
	if entityCol != "" {
		if len(files) != 1 {
			return nil, fmt.Errorf("-entity-col takes exactly one file, got %d", len(files))
		}
		return splitByEntity(files[0], group, entityCol)
	}

	var datasets []pipeline.Dataset
	for _, file := range files {
		header, rows, err := readCSV(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		entity := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		datasets = append(datasets, pipeline.Dataset{
			Entity: entity,
			Group:  group,
			Header: header,
			Rows:   rows,
		})
	}
	return datasets, nil
}

func splitByEntity(file, group, entityCol string) ([]pipeline.Dataset, error) {
	header, rows, err := readCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	col := -1
	want := normalize.Fold(entityCol)
	for i, label := range header {
		if normalize.Fold(label) == want {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%s: column %q not found", file, entityCol)
	}

	byEntity := make(map[string][][]string)
	var order []string
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		entity := strings.TrimSpace(row[col])
		if entity == "" {
			continue
		}
		if _, seen := byEntity[entity]; !seen {
			order = append(order, entity)
		}
		byEntity[entity] = append(byEntity[entity], row)
	}

	datasets := make([]pipeline.Dataset, 0, len(order))
	for _, entity := range order {
		datasets = append(datasets, pipeline.Dataset{
			Entity: entity,
			Group:  group,
			Header: header,
			Rows:   byEntity[entity],
		})
	}
	return datasets, nil
}

func readCSV(file string) ([]string, [][]string, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("empty file")
	}
	return all[0], all[1:], nil
}

func printReport(result *pipeline.RunResult) {
	fmt.Printf("run %s: %d entities analyzed, %d failed\n\n",
		result.RunID, len(result.Metrics), len(result.Failed))

	fmt.Printf("%-4s %-20s %-10s %8s %8s %8s %8s\n",
		"#", "ENTITY", "GROUP", "SCORE", "EFF", "PENDING", "DONE")
	for i, row := range result.Rankings {
		fmt.Printf("%-4d %-20s %-10s %8.1f %7.1f%% %8d %8d\n",
			i+1, row.Entity, row.Group, row.Score,
			row.EfficiencyRate*100, row.PendingCount, row.ProcessedCount)
	}

	if len(result.Bottlenecks) > 0 {
		fmt.Println("\nbottlenecks:")
		for _, flag := range result.Bottlenecks {
			target := flag.Entity
			if target == "" {
				target = "(group)"
			}
			fmt.Printf("  %-20s %-12s group=%s deviation=%+.1f%%\n",
				target, flag.Kind, flag.Group, flag.PercentDeviation)
		}
	}

	for _, failed := range result.Failed {
		fmt.Printf("\nskipped %s: %s\n", failed.Entity, failed.Reason)
	}
}
