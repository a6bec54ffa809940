package model

import "time"

// User owns categories, periods, transactions and bank accounts. There is no
// session state anywhere in the engine; every operation takes the user id
// explicitly.
type User struct {
	CreatedAt time.Time
	Name      string
	ID        int64
}
