package main

import "github.com/prodylabs/voicenote/cmd"

func main() {
	cmd.Execute()
}
