/*
Copyright © 2026 the VectorBatch authors.
This file is part of VectorBatch.

VectorBatch is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

VectorBatch is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with VectorBatch.  If not, see <http://www.gnu.org/licenses/>.
*/

package vectorbatch

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewCoordinatorDefaultsLogger(t *testing.T) {
	c := newCoordinator(nil)
	if c.log == nil {
		t.Fatal("newCoordinator(nil) must default to a usable logger")
	}
	if c.state != stateInit {
		t.Errorf("want initial state %q, got %q", stateInit, c.state)
	}
}

func TestNewCoordinatorKeepsCallerLogger(t *testing.T) {
	log := logrus.New()
	c := newCoordinator(log)
	if c.log != log {
		t.Error("newCoordinator must not replace a caller-supplied logger")
	}
}

func TestCoordinatorTransitionAdvancesState(t *testing.T) {
	c := newCoordinator(nil)
	c.transition(stateValidated)
	if c.state != stateValidated {
		t.Errorf("want state %q after transition, got %q", stateValidated, c.state)
	}
	c.transition(statePlanned)
	if c.state != statePlanned {
		t.Errorf("want state %q after transition, got %q", statePlanned, c.state)
	}
}
