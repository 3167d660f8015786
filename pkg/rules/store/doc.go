// Package store provides the versioned, tenant-scoped rule store.
//
// A RuleStore owns the tenant id and hands out copies of everything it
// holds. Each change to a rule (update, status change, delete, rollback)
// produces a new immutable RuleVersion; versions are never rewritten and
// rollback restores old content as a brand new version. Deleting a rule
// archives it so its history remains queryable.
//
// Persistence is delegated to a Repository. The repository package
// provides in-memory, SQLite and PostgreSQL implementations.
//
// Example:
//
//	st := store.New("tenant-a", repository.NewMemoryRepository(), nil, logger)
//
//	rule, err := st.AddRule(ctx, &rules.BusinessRule{
//	    Name:     "High value order",
//	    Category: "orders",
//	    Status:   rules.StatusActive,
//	    ConditionGroup: rules.ConditionGroup{
//	        Conditions: []rules.Condition{
//	            {Field: "order.total", Operator: rules.OperatorGreaterThan, Value: 1000},
//	        },
//	    },
//	    Actions: []rules.Action{
//	        {ActionType: rules.ActionEscalate, Parameters: map[string]interface{}{"level": "manager"}},
//	    },
//	}, "alice")
//
//	// Restore the original content as version 3.
//	_, err = st.RollbackRule(ctx, rule.ID, 1, "alice")
package store
