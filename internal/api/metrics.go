// Copyright 2025 The Meridian Authors
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file or at
// https://opensource.org/licenses/MIT.

package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var mApiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "meridian",
	Subsystem: "api",
	Name:      "requests",
	Help:      "Number of API requests",
}, []string{"method"})
