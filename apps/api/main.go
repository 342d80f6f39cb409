package main

// TODO:
// - serve the graduation archives through a signed download link instead of the admin API
func main() {
	startManual()
}
