package appointment

import (
	"errors"
	"testing"

	"github.com/nmoreira/consultorio-server/cmd/models"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		from  string
		to    string
		valid bool
	}{
		{from: models.StatusPendente, to: models.StatusConfirmado, valid: true},
		{from: models.StatusPendente, to: models.StatusCancelado, valid: true},
		{from: models.StatusConfirmado, to: models.StatusConcluido, valid: true},
		{from: models.StatusConfirmado, to: models.StatusCancelado, valid: true},

		{from: models.StatusPendente, to: models.StatusConcluido, valid: false},
		{from: models.StatusConfirmado, to: models.StatusPendente, valid: false},
		{from: models.StatusPendente, to: models.StatusPendente, valid: false},

		// terminal states
		{from: models.StatusCancelado, to: models.StatusPendente, valid: false},
		{from: models.StatusCancelado, to: models.StatusConfirmado, valid: false},
		{from: models.StatusCancelado, to: models.StatusCancelado, valid: false},
		{from: models.StatusConcluido, to: models.StatusCancelado, valid: false},
		{from: models.StatusConcluido, to: models.StatusConfirmado, valid: false},

		{from: "unknown", to: models.StatusConfirmado, valid: false},
	}

	for _, c := range cases {
		err := Transition(c.from, c.to)
		if c.valid && err != nil {
			t.Fatalf("%s -> %s: expected valid transition, got %v", c.from, c.to, err)
		}
		if !c.valid {
			if err == nil {
				t.Fatalf("%s -> %s: expected InvalidTransitionError, got nil", c.from, c.to)
			}
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("%s -> %s: expected InvalidTransitionError, got %T", c.from, c.to, err)
			}
		}
	}
}
