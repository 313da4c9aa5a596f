package main

import "github.com/manageconsole/manage/cmd/manage/cmd"

func main() {
	cmd.Execute()
}
