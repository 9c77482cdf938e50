package fee

import (
	"errors"

	"github.com/feeledger/backend/internal/domain/shared"
)

func errCode(err error) string {
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
