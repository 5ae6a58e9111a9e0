// Copyright 2025 Weaver Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tokenizers wraps model-family-specific tokenizers behind one
// adapter used by the classification pipeline: batch encoding with
// truncation, input normalization, and pad-id lookup.
//
// The package re-exports key types from go-huggingface/tokenizers so that
// callers don't need to import the upstream library directly.
package tokenizers

import (
	"fmt"
	"strings"
	"unicode"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/gomlx/go-huggingface/tokenizers"
	"github.com/gomlx/go-huggingface/tokenizers/api"
	"github.com/gomlx/go-huggingface/tokenizers/hftokenizer"
	"golang.org/x/text/unicode/norm"

	"github.com/weaverml/weaver/pkg/weaver/lib/models"
)

// Re-export key types from go-huggingface/tokenizers so pipeline code
// can import this package instead of the upstream library directly.
type (
	// Tokenizer is the full tokenizer interface with Encode/Decode/SpecialTokenID.
	Tokenizer = tokenizers.Tokenizer

	// SpecialToken is an enum of commonly used special tokens.
	SpecialToken = api.SpecialToken
)

// Re-export special token constants.
const (
	TokBeginningOfSentence = api.TokBeginningOfSentence
	TokEndOfSentence       = api.TokEndOfSentence
	TokUnknown             = api.TokUnknown
	TokPad                 = api.TokPad
	TokMask                = api.TokMask
	TokClassification      = api.TokClassification
)

// TruncationStrategy is the policy for shortening over-length token
// sequences prior to batching.
type TruncationStrategy string

const (
	// TruncateLongestFirst removes tokens from the longest sequence first.
	// For single-sequence inputs this is a hard cut at the maximum length.
	TruncateLongestFirst TruncationStrategy = "longest_first"
	// TruncateDoNotTruncate disables truncation.
	TruncateDoNotTruncate TruncationStrategy = "do_not_truncate"
)

// Option wraps one concrete tokenizer for a model family. It owns the
// vocabulary/merge tables and is immutable after construction.
type Option struct {
	modelType      models.ModelType
	tok            Tokenizer
	lowerCase      bool
	stripAccents   bool
	addPrefixSpace bool
}

// NewOption builds the tokenizer adapter for the given model family from its
// vocabulary file. Vocabulary files ending in ".model" load as SentencePiece
// (ALBERT, XLM-RoBERTa); anything else loads as a HuggingFace tokenizer.json.
// mergesPath is accepted for BPE families whose merge table ships separately;
// it is unused when the vocabulary file already embeds the merges.
//
// stripAccents defaults to the lowerCase setting for WordPiece families
// (BERT, DistilBERT, ALBERT) and to false otherwise. addPrefixSpace defaults
// to false; some RoBERTa checkpoints require it to be set.
func NewOption(
	modelType models.ModelType,
	vocabPath string,
	mergesPath string,
	lowerCase bool,
	stripAccents *bool,
	addPrefixSpace *bool,
) (*Option, error) {
	tok, err := loadTokenizer(vocabPath)
	if err != nil {
		return nil, fmt.Errorf("building %s tokenizer: %w", modelType, err)
	}
	_ = mergesPath // merges are embedded in tokenizer.json vocabularies

	return NewFromTokenizer(modelType, tok, lowerCase, stripAccents, addPrefixSpace), nil
}

// NewFromTokenizer wraps an already-constructed tokenizer. Intended for
// tests and callers bringing their own Tokenizer implementation.
func NewFromTokenizer(
	modelType models.ModelType,
	tok Tokenizer,
	lowerCase bool,
	stripAccents *bool,
	addPrefixSpace *bool,
) *Option {
	strip := false
	if stripAccents != nil {
		strip = *stripAccents
	} else {
		switch modelType {
		case models.Bert, models.DistilBert, models.Albert:
			strip = lowerCase
		}
	}

	prefixSpace := false
	if addPrefixSpace != nil {
		prefixSpace = *addPrefixSpace
	}

	return &Option{
		modelType:      modelType,
		tok:            tok,
		lowerCase:      lowerCase,
		stripAccents:   strip,
		addPrefixSpace: prefixSpace,
	}
}

func loadTokenizer(vocabPath string) (Tokenizer, error) {
	if strings.HasSuffix(vocabPath, ".model") {
		proc, err := esentencepiece.NewProcessorFromPath(vocabPath)
		if err != nil {
			return nil, fmt.Errorf("loading SentencePiece model: %w", err)
		}
		return &sentencepieceTokenizer{
			Processor: proc,
			Info:      proc.ModelInfo(),
		}, nil
	}

	tok, err := hftokenizer.NewFromFile(nil, vocabPath)
	if err != nil {
		return nil, fmt.Errorf("loading vocabulary %s: %w", vocabPath, err)
	}
	return tok, nil
}

// ModelType returns the family this tokenizer was built for.
func (o *Option) ModelType() models.ModelType {
	return o.modelType
}

// EncodeList tokenizes every text, applying input normalization and the
// truncation strategy at maxLen. One token-id sequence is returned per input
// text, in input order.
func (o *Option) EncodeList(texts []string, maxLen int, strategy TruncationStrategy) [][]int64 {
	encoded := make([][]int64, len(texts))
	for i, text := range texts {
		ids := o.tok.Encode(o.normalize(text))
		if strategy != TruncateDoNotTruncate && len(ids) > maxLen {
			ids = ids[:maxLen]
		}
		row := make([]int64, len(ids))
		for j, id := range ids {
			row[j] = int64(id)
		}
		encoded[i] = row
	}
	return encoded
}

// PadID returns the tokenizer's designated padding token id. Tokenizers
// without a pad token return an error; sequence classification requires one.
func (o *Option) PadID() (int64, error) {
	id, err := o.tok.SpecialTokenID(api.TokPad)
	if err != nil {
		return 0, fmt.Errorf("tokenizer defines no pad token: %w", err)
	}
	return int64(id), nil
}

// normalize applies the configured lowercase / strip-accents /
// add-prefix-space transforms before tokenization.
func (o *Option) normalize(text string) string {
	if o.lowerCase {
		text = strings.ToLower(text)
	}
	if o.stripAccents {
		text = stripAccents(text)
	}
	if o.addPrefixSpace && !strings.HasPrefix(text, " ") {
		text = " " + text
	}
	return text
}

// stripAccents decomposes to NFD and drops combining marks.
func stripAccents(text string) string {
	decomposed := norm.NFD.String(text)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// sentencepieceTokenizer wraps esentencepiece.Processor to implement the
// tokenizers.Tokenizer interface.
type sentencepieceTokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo
}

var _ Tokenizer = (*sentencepieceTokenizer)(nil)

// Encode returns the text encoded into a sequence of token IDs.
func (t *sentencepieceTokenizer) Encode(text string) []int {
	tokens := t.Processor.Encode(text)
	result := make([]int, len(tokens))
	for i, tok := range tokens {
		result[i] = tok.ID
	}
	return result
}

// Decode returns the text from a sequence of token IDs.
func (t *sentencepieceTokenizer) Decode(ids []int) string {
	return t.Processor.Decode(ids)
}

// SpecialTokenID returns the ID for the given special token, or an error if unknown.
func (t *sentencepieceTokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	switch token {
	case api.TokUnknown:
		return t.Info.UnknownID, nil
	case api.TokPad:
		return t.Info.PadID, nil
	case api.TokBeginningOfSentence:
		return t.Info.BeginningOfSentenceID, nil
	case api.TokEndOfSentence:
		return t.Info.EndOfSentenceID, nil
	default:
		return 0, fmt.Errorf("unknown special token: %s (%d)", token, int(token))
	}
}
