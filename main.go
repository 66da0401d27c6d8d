package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"pesadb/engine"
	"pesadb/query_executor"
)

func main() {
	configPath := flag.String("config", "", "path to a yaml config file")
	dbName := flag.String("db", "main", "database to open on start")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := engine.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.DefaultDatabase = *dbName

	eng, err := engine.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer eng.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s> ", eng.CurrentDatabase())

		if !scanner.Scan() { // Ctrl+D
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			break
		}

		res, err := eng.ExecuteSQL(line)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		printResult(res)
	}
}

func printResult(res any) {
	switch r := res.(type) {
	case *engine.Result:
		printTable(r)
	case *engine.StatusResult:
		fmt.Println(r.Status)
	case *executor.CreateTableResult:
		if r.Created {
			fmt.Printf("Table '%s' created\n", r.Table)
		} else {
			fmt.Printf("Table '%s' already exists\n", r.Table)
		}
	case *executor.DropTableResult:
		if r.Dropped {
			fmt.Printf("Table '%s' dropped\n", r.Table)
		} else {
			fmt.Printf("Table '%s' does not exist\n", r.Table)
		}
	case *executor.InsertResult:
		fmt.Printf("%d row(s) inserted\n", r.RowsInserted)
	case *executor.UpdateResult:
		fmt.Printf("%d row(s) updated\n", r.RowsUpdated)
	case *executor.DeleteResult:
		fmt.Printf("%d row(s) deleted\n", r.RowsDeleted)
	default:
		fmt.Printf("%v\n", res)
	}
}

func printTable(res *engine.Result) {
	if len(res.Columns) == 0 && res.RowCount == 0 {
		fmt.Println("Empty set")
		return
	}

	widths := make([]int, len(res.Columns))
	for i, col := range res.Columns {
		widths[i] = len(col)
	}
	for _, row := range res.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	printSeparator(widths)
	for i, col := range res.Columns {
		fmt.Printf("| %-*s ", widths[i], col)
	}
	fmt.Println("|")
	printSeparator(widths)
	for _, row := range res.Rows {
		for i, cell := range row {
			fmt.Printf("| %-*s ", widths[i], cell)
		}
		fmt.Println("|")
	}
	printSeparator(widths)
	fmt.Printf("%d row(s)\n", res.RowCount)
}

func printSeparator(widths []int) {
	for _, w := range widths {
		fmt.Print("+", strings.Repeat("-", w+2))
	}
	fmt.Println("+")
}
