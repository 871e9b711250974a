package sanitizer

import "strings"

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

func lower(s string) string {
	return strings.ToLower(s)
}

func NormalizeEmail(email string) string {
	p := Pipeline{
		TrimAndNormalize,
		lower,
	}
	return p.Apply(email)
}

func NormalizeUsername(username string) string {
	p := Pipeline{
		TrimAndNormalize,
		lower,
	}
	return p.Apply(username)
}
