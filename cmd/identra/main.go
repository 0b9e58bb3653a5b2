package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identra/internal/server"
	"github.com/smallbiznis/identra/pkg/db"
	"github.com/smallbiznis/identra/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
