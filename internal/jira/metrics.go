// Copyright 2025 Tom Barlow
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

package jira

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks attempts sent to the Jira API by operation.
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telejira_jira_requests_total",
			Help: "Total Jira API request attempts by operation",
		},
		[]string{"operation"},
	)

	// errorsTotal tracks failed attempts by operation and error kind.
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telejira_jira_errors_total",
			Help: "Total failed Jira API attempts by operation and error kind",
		},
		[]string{"operation", "kind"},
	)

	// retriesTotal tracks backoff waits taken before reattempting.
	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telejira_jira_retries_total",
			Help: "Total Jira API retries by operation",
		},
		[]string{"operation"},
	)

	// rateLimitWaits tracks admissions that had to wait for the window.
	rateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telejira_jira_rate_limit_waits_total",
			Help: "Total admissions delayed by the client-side rate limiter",
		},
	)
)
