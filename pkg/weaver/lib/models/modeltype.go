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

package models

import "fmt"

// ModelType identifies a supported transformer encoder family. The set is
// closed: adding a family means extending every switch that dispatches on it.
type ModelType string

const (
	Bert       ModelType = "bert"
	DistilBert ModelType = "distilbert"
	Roberta    ModelType = "roberta"
	XLMRoberta ModelType = "xlm-roberta"
	Albert     ModelType = "albert"
	Bart       ModelType = "bart"
	Electra    ModelType = "electra"
	Marian     ModelType = "marian"
	T5         ModelType = "t5"
)

// AllModelTypes lists every known family tag, implemented or not.
func AllModelTypes() []ModelType {
	return []ModelType{Bert, DistilBert, Roberta, XLMRoberta, Albert, Bart, Electra, Marian, T5}
}

// ParseModelType converts a family tag string to a ModelType.
func ParseModelType(s string) (ModelType, error) {
	switch ModelType(s) {
	case Bert, DistilBert, Roberta, XLMRoberta, Albert, Bart, Electra, Marian, T5:
		return ModelType(s), nil
	default:
		return "", fmt.Errorf("unknown model type %q", s)
	}
}

// String returns the family tag.
func (m ModelType) String() string {
	return string(m)
}
