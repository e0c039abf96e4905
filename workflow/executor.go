// Copyright (C) 2019-2021, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package workflow

// Workflow is a single unit of pipeline work that can fail partway through.
// Implementations own their own cleanup on a failed Execute.
type Workflow interface {
	Execute() error
}

type Executor interface {
	Execute(Workflow) error
}
