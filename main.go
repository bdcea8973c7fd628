package main

import (
	"github.com/tdjsnelling/sqtracker-sub000/cmd"
	_ "github.com/tdjsnelling/sqtracker-sub000/store/memory"
	_ "github.com/tdjsnelling/sqtracker-sub000/store/mysql"
	_ "github.com/tdjsnelling/sqtracker-sub000/store/postgres"
)

func main() {
	cmd.Execute()
}
