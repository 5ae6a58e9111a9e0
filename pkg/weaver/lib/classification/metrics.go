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

package classification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	classificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weaver",
		Subsystem: "classification",
		Name:      "requests_total",
		Help:      "Number of classification requests served, by mode.",
	}, []string{"mode"})

	classificationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weaver",
		Subsystem: "classification",
		Name:      "errors_total",
		Help:      "Number of failed classification requests, by mode.",
	}, []string{"mode"})

	classificationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "weaver",
		Subsystem: "classification",
		Name:      "duration_seconds",
		Help:      "Latency of classification requests, by mode.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	classificationTexts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "weaver",
		Subsystem: "classification",
		Name:      "texts_total",
		Help:      "Number of input texts classified, by mode.",
	}, []string{"mode"})
)

const (
	modeSingleLabel = "single_label"
	modeMultiLabel  = "multi_label"
)
