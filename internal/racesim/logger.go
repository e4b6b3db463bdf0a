package racesim

import (
	"io/ioutil"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.FieldLogger

func discardLogger() Logger {
	logger := logrus.New()
	logger.Out = ioutil.Discard

	return logger
}
