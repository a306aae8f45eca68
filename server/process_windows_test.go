package server

func runPlatformHelper(string) {}
