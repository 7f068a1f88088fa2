package firestore

import "github.com/secmon-lab/standup/pkg/domain/interfaces"

var ErrNotFound = interfaces.ErrNotFound
