package domain

import "time"

// Question is a titled post owned by the user that created it.
type Question struct {
	ID          int64
	Title       string
	Description string
	UserID      int64
	Author      *User
	Tags        []Tag
	Answers     []Answer
	CreatedAt   time.Time
}

// Tag labels questions. Names are unique.
type Tag struct {
	ID   int64
	Name string
}

// Answer is a reply to a question.
type Answer struct {
	ID          int64
	Description string
	UserID      int64
	QuestionID  int64
	Author      *User
	Accepted    bool
	CreatedAt   time.Time
}
