package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "OpenAI API key is required",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Database config
	if c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "database URL is required",
		})
	} else if _, err := url.Parse(c.Database.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if len(c.Database.Partitions) == 0 {
		errors = append(errors, ValidationError{
			Field:   "database.partitions",
			Message: "at least one passage partition is required",
		})
	}

	// Validate Pipeline config
	if c.Pipeline.TimeoutSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.timeout_seconds",
			Message: "timeout_seconds must be positive",
		})
	}

	if c.Pipeline.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Pipeline.RetrievalStrategy != "store" && c.Pipeline.RetrievalStrategy != "cosine" {
		errors = append(errors, ValidationError{
			Field:   "pipeline.retrieval_strategy",
			Message: fmt.Sprintf("unknown retrieval strategy: %s", c.Pipeline.RetrievalStrategy),
		})
	}

	if c.Pipeline.MaxDurationSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "pipeline.max_duration_seconds",
			Message: "max_duration_seconds must be non-negative",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	return errors
}
