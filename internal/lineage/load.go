package lineage

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed batch.schema.json
var batchSchemaJSON []byte

var (
	batchSchemaOnce sync.Once
	batchSchema     *jsonschema.Schema
	batchSchemaErr  error
)

func compiledBatchSchema() (*jsonschema.Schema, error) {
	batchSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("batch.schema.json", bytes.NewReader(batchSchemaJSON)); err != nil {
			batchSchemaErr = fmt.Errorf("failed to load batch schema: %w", err)
			return
		}
		batchSchema, batchSchemaErr = compiler.Compile("batch.schema.json")
		if batchSchemaErr != nil {
			batchSchemaErr = fmt.Errorf("failed to compile batch schema: %w", batchSchemaErr)
		}
	})
	return batchSchema, batchSchemaErr
}

// Load decodes and validates a lineage batch. Malformed counts are rejected
// here so the evaluator never sees them.
func Load(r io.Reader) (*Batch, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch: %w", err)
	}
	return Parse(data)
}

// Parse validates raw batch JSON and decodes it.
func Parse(data []byte) (*Batch, error) {
	schema, err := compiledBatchSchema()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("batch does not match schema: %w", err)
	}

	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}

	for i, rec := range batch.Records {
		if rec.Completeness.TotalExpected != TrackedCheckpoints {
			return nil, fmt.Errorf("record %d (%s): total_expected %d, want %d",
				i, rec.BookID, rec.Completeness.TotalExpected, TrackedCheckpoints)
		}
		if rec.Completeness.ExistsCount > rec.Completeness.TotalExpected {
			return nil, fmt.Errorf("record %d (%s): exists_count %d exceeds total_expected %d",
				i, rec.BookID, rec.Completeness.ExistsCount, rec.Completeness.TotalExpected)
		}
		if rec.LocalFolder == "" {
			batch.Records[i].LocalFolder = NoLocalFolder
		}
	}
	return &batch, nil
}
