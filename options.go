// Copyright 2024 The prop Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prop

type config struct {
	report        bool
	warnOwnership bool
	managed       bool
}

func defaultConfig() config {
	return config{report: true}
}

// Option configures a root promise at construction.
type Option func(*config)

// WithUnobservedErrorReport controls whether the promise reports an error
// that settles unobserved to the loop's diagnostics sink. On by default;
// disabling it treats the promise as already observed.
func WithUnobservedErrorReport(enabled bool) Option {
	return func(c *config) { c.report = enabled }
}

// WithOwnershipWarning makes the promise emit a diagnostics event whenever
// it's chained without life-cycle management (see Manage and Close).
func WithOwnershipWarning() Option {
	return func(c *config) { c.warnOwnership = true }
}

// WithManaged marks the promise as life-cycle managed from the start,
// suppressing ownership warnings.
func WithManaged() Option {
	return func(c *config) { c.managed = true }
}
