package session

import (
	"github.com/thebtf/factura/internal/reconcile"
)

func reconIsCompleted(s *Session) bool {
	return s.Recon != nil && reconcile.IsCompleted(s.Recon)
}

func reconCanConfirm(s *Session) bool {
	return s.Recon != nil && reconcile.CanConfirm(s.Recon, s.Analysis)
}
