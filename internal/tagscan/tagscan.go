// Package tagscan turns proximity/tag scan payloads into drink candidates.
//
// Scanning is best-effort: a payload that is malformed, missing the alcohol
// mass, or carrying a non-positive mass still logs a standard drink.
package tagscan

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mmynk/saferound/internal/models"
)

const payloadSchemaURL = "https://saferound.local/schemas/tag-payload.schema.json"

const payloadSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["alcohol_grams"],
  "properties": {
    "alcohol_grams": {"type": "number", "exclusiveMinimum": 0}
  }
}`

var schema = compileSchema()

func compileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(payloadSchemaURL, bytes.NewReader([]byte(payloadSchema))); err != nil {
		panic(err)
	}
	return c.MustCompile(payloadSchemaURL)
}

// Parse validates a scan payload and returns the drink it describes, falling
// back to a standard drink when the payload is unusable.
func Parse(payload []byte) models.DrinkCandidate {
	candidate, err := parse(payload)
	if err != nil {
		slog.Debug("Tag payload rejected, logging standard drink", "error", err)
		return models.DrinkCandidate{MassGrams: models.StandardDrinkGrams, Source: models.DrinkSourceDefault}
	}
	return candidate
}

func parse(payload []byte) (models.DrinkCandidate, error) {
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return models.DrinkCandidate{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return models.DrinkCandidate{}, err
	}
	grams, ok := doc.(map[string]any)["alcohol_grams"].(float64)
	if !ok {
		return models.DrinkCandidate{}, errors.New("alcohol_grams is not a number")
	}
	return models.DrinkCandidate{MassGrams: grams, Source: models.DrinkSourceTag}, nil
}

// Source yields raw scan payloads. Next blocks until a payload arrives, the
// source is exhausted (io.EOF) or ctx is done.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
}

// LineSource reads newline-delimited payloads, one scan per line.
type LineSource struct {
	scanner *bufio.Scanner
}

// NewLineSource wraps r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{scanner: bufio.NewScanner(r)}
}

// Next returns the next non-empty line.
func (s *LineSource) Next(ctx context.Context) ([]byte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
}

// Listen pumps candidates from src into sink until the source ends or ctx is
// done. A clean end of input returns nil.
func Listen(ctx context.Context, src Source, sink func(models.DrinkCandidate)) error {
	for {
		payload, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		sink(Parse(payload))
	}
}
