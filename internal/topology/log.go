package topology

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "topology")
