// Copyright 2024 Google Inc. All Rights Reserved.
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

package diskcache

import (
	"github.com/eosfusex/cachecore/pkg/model"
	"golang.org/x/sys/unix"
)

const maxCookieLen = 256

func readCookieXattr(path string) (model.Cookie, bool, error) {
	buf := make([]byte, maxCookieLen)
	n, err := unix.Getxattr(path, model.CookieXattrKey, buf)
	if err != nil {
		if err == unix.ENODATA || err == unix.ENOTSUP {
			return "", false, nil
		}
		return "", false, err
	}
	return model.Cookie(buf[:n]), true, nil
}

func writeCookieXattr(path string, cookie model.Cookie) error {
	err := unix.Setxattr(path, model.CookieXattrKey, []byte(cookie), 0)
	if err == unix.ENOTSUP {
		return nil
	}
	return err
}
