// Inspect a database file: header info, per-page types, catalog and
// index contents.
// Usage: go run ./cmd/inspect <path-to-.db>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"pesadb/catalog"
	"pesadb/storage_engine/filemanager"
	"pesadb/storage_engine/index"
	"pesadb/storage_engine/page"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <database.db>\n", os.Args[0])
		os.Exit(1)
	}
	if err := inspect(os.Args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func inspect(path string) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	fm, err := filemanager.New(path, logger)
	if err != nil {
		return err
	}
	if !fm.Exists() {
		return fmt.Errorf("no database file at %s", path)
	}

	info, err := fm.GetDatabaseInfo()
	if err != nil {
		return err
	}
	fmt.Printf("magic:      %s\n", info.Magic)
	fmt.Printf("file size:  %d bytes\n", info.FileSize)
	fmt.Printf("pages:      %d x %d bytes\n", info.TotalPages, info.PageSize)
	fmt.Printf("free list:  %d\n", info.FreeListHead)
	fmt.Printf("wal size:   %d bytes\n", info.WALSize)

	fmt.Println("\npage map:")
	for id := uint32(0); id < info.TotalPages; id++ {
		pg, err := fm.ReadPage(id)
		if err != nil {
			fmt.Printf("  %4d  <unreadable: %v>\n", id, err)
			continue
		}
		detail := ""
		if pg.Type() == page.TypeTable {
			if name, err := pg.ReadString(page.HeaderSize); err == nil {
				detail = "  table=" + name
			}
		}
		fmt.Printf("  %4d  %-8s free_start=%d%s\n", id, pg.Type(), pg.FreeStart(), detail)
	}

	cat, err := catalog.New(fm, logger)
	if err != nil {
		return err
	}
	fmt.Println("\ntables:")
	for _, name := range cat.ListTables() {
		desc, err := cat.DescribeTable(name)
		if err != nil {
			return err
		}
		fmt.Printf("  %s\n", desc)
	}

	im, err := index.NewIndexManager(fm, logger)
	if err != nil {
		return err
	}
	fmt.Println("\nindexes:")
	for name, entry := range im.GetIndexInfo() {
		fmt.Printf("  %s: %v\n", name, entry)
	}
	return nil
}
