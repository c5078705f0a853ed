package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetEvent struct {
	Height    int64  `parquet:"name=height, type=INT64"`
	TxHash    string `parquet:"name=tx_hash, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Type      string `parquet:"name=type, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Puzzles   string `parquet:"name=puzzles, type=UTF8, encoding=PLAIN_DICTIONARY"`
	IndexedAt string `parquet:"name=indexed_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportParquet writes the indexed events matching typePrefix to path and
// returns the number of rows written.
func (ix *Indexer) ExportParquet(ctx context.Context, path, typePrefix string) (int, error) {
	records, err := ix.Events(ctx, typePrefix, 0)
	if err != nil {
		return 0, err
	}
	rows := make([]parquetEvent, 0, len(records))
	for _, rec := range records {
		rows = append(rows, parquetEvent{
			Height:    int64(rec.Height),
			TxHash:    rec.TxHash,
			Type:      rec.Type,
			Puzzles:   rec.Puzzles,
			IndexedAt: rec.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	if err := writeParquet(ctx, path, rows); err != nil {
		return 0, err
	}
	ix.logger.Info("exported events", slog.String("path", path), slog.Int("rows", len(rows)))
	return len(rows), nil
}

// writeParquet never leaves a partial file at path when it fails.
func writeParquet(ctx context.Context, path string, rows []parquetEvent) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("indexer: create parquet: %w", err)
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(path)
		}
	}()

	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(file), new(parquetEvent), 1)
	if err != nil {
		return fmt.Errorf("indexer: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for i := range rows {
		if err = ctx.Err(); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("indexer: export aborted: %w", err)
		}
		if err = pw.Write(&rows[i]); err != nil {
			_ = pw.WriteStop()
			return fmt.Errorf("indexer: write parquet row: %w", err)
		}
	}
	if err = pw.WriteStop(); err != nil {
		return fmt.Errorf("indexer: finalize parquet: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("indexer: close parquet: %w", err)
	}
	return nil
}
