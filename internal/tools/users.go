package tools

import (
	"context"
	"errors"
	"fmt"

	"stock-assistant/internal/store"
)

// UserTools manages the users table.
type UserTools struct {
	store *store.Store
}

func NewUserTools(st *store.Store) *UserTools {
	return &UserTools{store: st}
}

func (t *UserTools) Tools() []Tool {
	return []Tool{
		{
			Name:        "get_all_users",
			Description: "Get all users from the database. Returns a list of all users with their details.",
			InputSchema: objectSchema(nil, map[string]any{}),
			Handler:     t.getAllUsers,
		},
		{
			Name:        "get_user_by_id",
			Description: "Get a specific user by their ID.",
			InputSchema: objectSchema([]string{"id"}, map[string]any{
				"id": prop("integer", "The user ID to retrieve"),
			}),
			Handler: t.getUserByID,
		},
		{
			Name:        "create_user",
			Description: "Create a new user in the database.",
			InputSchema: objectSchema([]string{"name", "email", "password"}, map[string]any{
				"name":     prop("string", "Full name of the user"),
				"email":    prop("string", "Email address of the user"),
				"password": prop("string", "Password for the user (will be stored as provided)"),
				"role":     prop("integer", "Role ID of the user (default: 1)"),
			}),
			Handler: t.createUser,
		},
		{
			Name:        "update_user",
			Description: "Update an existing user's information.",
			InputSchema: objectSchema([]string{"id"}, map[string]any{
				"id":        prop("integer", "The user ID to update"),
				"name":      prop("string", "New name for the user (optional)"),
				"email":     prop("string", "New email for the user (optional)"),
				"role":      prop("integer", "New role ID for the user (optional)"),
				"is_active": prop("integer", "Set user active status (0 or 1, optional)"),
			}),
			Handler: t.updateUser,
		},
		{
			Name:        "delete_user",
			Description: "Delete a user from the database by their ID.",
			InputSchema: objectSchema([]string{"id"}, map[string]any{
				"id": prop("integer", "The user ID to delete"),
			}),
			Handler: t.deleteUser,
		},
	}
}

func (t *UserTools) getAllUsers(_ context.Context, _ map[string]any) (map[string]any, error) {
	users, err := t.store.ListUsers()
	if err != nil {
		return errResult("Database error: " + err.Error()), nil
	}
	if users == nil {
		users = []store.User{}
	}
	return map[string]any{"users": users, "count": len(users)}, nil
}

func (t *UserTools) getUserByID(_ context.Context, args map[string]any) (map[string]any, error) {
	id, ok := argInt(args, "id")
	if !ok || id == 0 {
		return errResult("Missing 'id' parameter"), nil
	}
	u, err := t.store.GetUser(int64(id))
	if err != nil {
		return errResult("Database error: " + err.Error()), nil
	}
	if u == nil {
		return errResult(fmt.Sprintf("User with id %d not found", id)), nil
	}
	return map[string]any{"user": u}, nil
}

func (t *UserTools) createUser(_ context.Context, args map[string]any) (map[string]any, error) {
	name := argString(args, "name")
	email := argString(args, "email")
	password := argString(args, "password")
	role := 1
	if v, ok := argInt(args, "role"); ok {
		role = v
	}
	if name == "" {
		return errResult("Missing 'name' parameter"), nil
	}
	if email == "" {
		return errResult("Missing 'email' parameter"), nil
	}
	if password == "" {
		return errResult("Missing 'password' parameter"), nil
	}

	id, err := t.store.CreateUser(name, email, password, role)
	if errors.Is(err, store.ErrEmailExists) {
		return errResult(fmt.Sprintf("User with email %s already exists", email)), nil
	}
	if err != nil {
		return errResult("Database error: " + err.Error()), nil
	}
	return map[string]any{"success": true, "message": "User created successfully", "id": id}, nil
}

func (t *UserTools) updateUser(_ context.Context, args map[string]any) (map[string]any, error) {
	id, ok := argInt(args, "id")
	if !ok || id == 0 {
		return errResult("Missing 'id' parameter"), nil
	}

	var upd store.UserUpdate
	if v, ok := args["name"].(string); ok {
		upd.Name = &v
	}
	if v, ok := args["email"].(string); ok {
		upd.Email = &v
	}
	if v, ok := argInt(args, "role"); ok {
		upd.Role = &v
	}
	if v, ok := argInt(args, "is_active"); ok {
		upd.IsActive = &v
	}
	if upd.Name == nil && upd.Email == nil && upd.Role == nil && upd.IsActive == nil {
		return errResult("No fields to update. Provide at least one of: name, email, role, is_active"), nil
	}

	found, err := t.store.UpdateUser(int64(id), upd)
	if err != nil {
		return errResult("Database error: " + err.Error()), nil
	}
	if !found {
		return errResult(fmt.Sprintf("User with id %d not found", id)), nil
	}
	return map[string]any{"success": true, "message": fmt.Sprintf("User %d updated successfully", id)}, nil
}

func (t *UserTools) deleteUser(_ context.Context, args map[string]any) (map[string]any, error) {
	id, ok := argInt(args, "id")
	if !ok || id == 0 {
		return errResult("Missing 'id' parameter"), nil
	}
	found, err := t.store.DeleteUser(int64(id))
	if err != nil {
		return errResult("Database error: " + err.Error()), nil
	}
	if !found {
		return errResult(fmt.Sprintf("User with id %d not found", id)), nil
	}
	return map[string]any{"success": true, "message": fmt.Sprintf("User %d deleted successfully", id)}, nil
}
