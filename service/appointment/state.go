package appointment

import "github.com/nmoreira/consultorio-server/cmd/models"

// transitions is the full status lifecycle. cancelado and concluido are
// terminal; nothing leaves them.
var transitions = map[string][]string{
	models.StatusPendente:   {models.StatusConfirmado, models.StatusCancelado},
	models.StatusConfirmado: {models.StatusConcluido, models.StatusCancelado},
}

func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition validates a status change, returning InvalidTransitionError
// for anything outside the lifecycle table.
func Transition(from, to string) error {
	if !CanTransition(from, to) {
		return &InvalidTransitionError{From: from, To: to}
	}
	return nil
}
