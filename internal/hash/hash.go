/*
Copyright © 2026 the GeoCat authors.
This file is part of GeoCat.

GeoCat is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

GeoCat is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with GeoCat.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package hash builds deterministic cache keys for load requests.
package hash

import (
	"encoding/gob"
	"fmt"
	"hash"
	"hash/fnv"

	"github.com/davecgh/go-spew/spew"
)

var printer = spew.ConfigState{
	Indent:                  " ",
	SortKeys:                true,
	DisableMethods:          true,
	SpewKeys:                true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
}

// Key returns a hash key for the given values. Values are gob-encoded in
// order. Values gob cannot encode, such as structs without exported
// fields, are printed with spew instead.
func Key(values ...interface{}) string {
	h := fnv.New128a()
	for i, v := range values {
		fmt.Fprintf(h, "%d:", i)
		write(h, v)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

func write(h hash.Hash, v interface{}) {
	if v == nil {
		h.Write([]byte("nil"))
		return
	}
	// gob writes partial output before failing, so encode into a
	// separate hash and only use it on success.
	g := fnv.New128a()
	if err := gob.NewEncoder(g).Encode(v); err == nil {
		h.Write(g.Sum(nil))
		return
	}
	printer.Fprintf(h, "%#v", v)
}
