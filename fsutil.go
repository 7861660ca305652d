// Copyright 2026 Conductor OSS
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.

package ragprep

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	removeAttempts = 3
	removeBackoff  = time.Second
)

// sleep is replaced in tests.
var sleep = time.Sleep

// removeAll is replaced in tests.
var removeAll = os.RemoveAll

// removeAllRetry deletes dir, retrying permission and busy errors which
// happen while another process still holds a handle. It reports whether the
// directory is gone. A leftover directory is logged, never fatal.
func removeAllRetry(dir string, log logrus.FieldLogger) bool {
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return true
	}
	var err error
	for attempt := 1; attempt <= removeAttempts; attempt++ {
		if attempt > 1 {
			sleep(removeBackoff)
		}
		if err = removeAll(dir); err == nil {
			return true
		}
		if !isTransientFSError(err) {
			break
		}
		log.WithError(err).WithField("attempt", attempt).Warn("directory busy, retrying removal")
	}
	log.WithError(err).WithField("dir", dir).Error("failed to remove directory")
	return false
}

func isTransientFSError(err error) bool {
	return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EBUSY)
}
