package main

import (
	stdtesting "testing"

	journaltesting "github.com/learnjournal/journal/testing"
)

func TestMain(m *stdtesting.M) {
	journaltesting.TestMain(m)
}

func TestMainSkipsStartupInTestMode(t *stdtesting.T) {
	main()
}
