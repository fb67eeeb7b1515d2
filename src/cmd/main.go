package main

import (
	"github.com/sirupsen/logrus"

	cfg "wallserv/src/configuration"
	server "wallserv/src/server"
)

func main() {
	config := cfg.ReadProperties()
	if err := server.RunServer(config); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}
