// Copyright 2024 ledcat Authors
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

package common

import "errors"

var (
	ErrIO                = errors.New("I/O error")
	ErrClosed            = errors.New("closed")
	ErrInvalidFrame      = errors.New("invalid frame")
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
	ErrInvalidDimensions = errors.New("invalid dimensions")
	ErrNoSources         = errors.New("no input sources")
	ErrSinkBusy          = errors.New("sink is in use by another process")
)
