package history

import "database/sql"

type Video struct {
	ID          string
	Title       string
	Channel     string
	State       string
	Status      string
	UpdatedTS   int64
	AskCount    int
	LastAskedTS sql.NullInt64
}

type Exchange struct {
	ID       int64
	VideoID  string
	AskedTS  int64
	Question string
	Answer   string
	Error    string
}

// Failed reports whether the exchange ended without an answer.
func (e Exchange) Failed() bool {
	return e.Answer == "" && e.Error != ""
}
