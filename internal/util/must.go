package util

func Require[T any](value T, err error) T {
	Must(err)
	return value
}

func Must(err error) {
	if err != nil {
		panic(err)
	}
}
