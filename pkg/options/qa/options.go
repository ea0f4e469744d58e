// Package qa provides question answering configuration options.
package qa

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/campus-qa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options contains retrieval, answering and chunking configuration.
type Options struct {
	// TopK is the number of passages retrieved per question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// ConfidenceFloor is the minimum top score required to call the model.
	// Zero disables the check.
	ConfidenceFloor float64 `json:"confidence-floor" mapstructure:"confidence-floor"`

	// ChunkSize is the maximum passage length in characters.
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`

	// ChunkOverlap is the number of characters shared by consecutive slices
	// of an over-long block.
	ChunkOverlap int `json:"chunk-overlap" mapstructure:"chunk-overlap"`

	// SourcePrefix prefixes every passage id.
	SourcePrefix string `json:"source-prefix" mapstructure:"source-prefix"`

	// CitationCount is the number of hits cited under an answer.
	CitationCount int `json:"citation-count" mapstructure:"citation-count"`

	// PreviewLength truncates source previews in API responses.
	PreviewLength int `json:"preview-length" mapstructure:"preview-length"`

	// OffTopicFilter enables the keyword off-topic gate before retrieval.
	OffTopicFilter bool `json:"off-topic-filter" mapstructure:"off-topic-filter"`

	// AnswerTimeout bounds a whole Ask call.
	AnswerTimeout time.Duration `json:"answer-timeout" mapstructure:"answer-timeout"`

	// HoursGuidanceURL is linked from the library hours fallback when set.
	HoursGuidanceURL string `json:"hours-guidance-url" mapstructure:"hours-guidance-url"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		TopK:            8,
		ConfidenceFloor: 0.10,
		ChunkSize:       1200,
		ChunkOverlap:    200,
		SourcePrefix:    "campus",
		CitationCount:   3,
		PreviewLength:   220,
		OffTopicFilter:  false,
		AnswerTimeout:   60 * time.Second,
	}
}

// AddFlags adds flags for QA options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "qa."
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of passages retrieved per question.")
	fs.Float64Var(&o.ConfidenceFloor, p+"confidence-floor", o.ConfidenceFloor, "Minimum top score before calling the model, 0 disables.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum passage length in characters.")
	fs.IntVar(&o.ChunkOverlap, p+"chunk-overlap", o.ChunkOverlap, "Overlap between slices of an over-long block.")
	fs.StringVar(&o.SourcePrefix, p+"source-prefix", o.SourcePrefix, "Prefix of every passage id.")
	fs.IntVar(&o.CitationCount, p+"citation-count", o.CitationCount, "Number of hits cited under an answer.")
	fs.IntVar(&o.PreviewLength, p+"preview-length", o.PreviewLength, "Length of source previews in responses.")
	fs.BoolVar(&o.OffTopicFilter, p+"off-topic-filter", o.OffTopicFilter, "Refuse questions that look unrelated to the university.")
	fs.DurationVar(&o.AnswerTimeout, p+"answer-timeout", o.AnswerTimeout, "Timeout of a single question.")
	fs.StringVar(&o.HoursGuidanceURL, p+"hours-guidance-url", o.HoursGuidanceURL, "Page linked from the library hours fallback.")
}

// Validate validates the QA options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("qa.top-k must be positive"))
	}
	if o.ConfidenceFloor < 0 || o.ConfidenceFloor >= 1 {
		errs = append(errs, fmt.Errorf("qa.confidence-floor must be within [0, 1)"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("qa.chunk-size must be positive"))
	}
	if o.ChunkOverlap < 0 || o.ChunkOverlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("qa.chunk-overlap must be within [0, chunk-size)"))
	}
	if o.SourcePrefix == "" {
		errs = append(errs, fmt.Errorf("qa.source-prefix cannot be empty"))
	}
	if o.CitationCount <= 0 {
		errs = append(errs, fmt.Errorf("qa.citation-count must be positive"))
	}
	return errs
}

// Complete completes the QA options with defaults.
func (o *Options) Complete() error {
	if o.PreviewLength <= 0 {
		o.PreviewLength = 220
	}
	if o.AnswerTimeout <= 0 {
		o.AnswerTimeout = 60 * time.Second
	}
	return nil
}
