package main

import (
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/credit-ledger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		logrus.WithError(err).Fatal("credit-ledger")
	}
}
