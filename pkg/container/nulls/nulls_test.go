// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package nulls

import (
	"testing"

	c "github.com/smartystreets/goconvey/convey"
)

func TestNulls(t *testing.T) {
	c.Convey("nulls basic operations", t, func() {
		var nsp Nulls
		c.So(Any(&nsp), c.ShouldBeFalse)
		c.So(Length(&nsp), c.ShouldEqual, 0)
		c.So(String(&nsp), c.ShouldEqual, "[]")

		Add(&nsp, 1, 3, 5)
		c.So(Any(&nsp), c.ShouldBeTrue)
		c.So(Contains(&nsp, 3), c.ShouldBeTrue)
		c.So(Contains(&nsp, 2), c.ShouldBeFalse)
		c.So(Length(&nsp), c.ShouldEqual, 3)
		c.So(String(&nsp), c.ShouldEqual, "[1 3 5]")
		c.So(FilterCount(&nsp, []int64{0, 1, 2, 3}), c.ShouldEqual, 2)

		Del(&nsp, 3)
		c.So(Contains(&nsp, 3), c.ShouldBeFalse)

		cloned := nsp.Clone()
		Reset(&nsp)
		c.So(Any(&nsp), c.ShouldBeFalse)
		c.So(Length(cloned), c.ShouldEqual, 2)
	})

	c.Convey("nulls set algebra", t, func() {
		a := Build(1, 2)
		b := Build(7)
		var r Nulls
		Or(a, b, &r)
		c.So(Length(&r), c.ShouldEqual, 3)

		Or(&Nulls{}, nil, &r)
		c.So(r.Np, c.ShouldBeNil)

		Set(a, b)
		c.So(Contains(a, 7), c.ShouldBeTrue)

		var rng Nulls
		AddRange(&rng, 10, 20)
		c.So(Length(&rng), c.ShouldEqual, 10)

		var sub Nulls
		Range(&rng, 15, 18, 15, &sub)
		c.So(String(&sub), c.ShouldEqual, "[0 1 2]")
	})
}
