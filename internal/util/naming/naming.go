package naming

import "fmt"

const (
	prefix = "quickhost"

	// Path is the IAM path every quickhost identity object is created under.
	Path = "/quickhost/"
)

// Policy actions, one managed policy each.
const (
	ActionCreate   = "create"
	ActionDescribe = "describe"
	ActionUpdate   = "update"
	ActionDestroy  = "destroy"
)

// Actions lists the policy actions in creation order.
func Actions() []string {
	return []string{ActionCreate, ActionDescribe, ActionUpdate, ActionDestroy}
}

func User() string {
	return prefix + "-user"
}

func Group() string {
	return prefix + "-users"
}

func Policy(action string) string {
	return fmt.Sprintf("%s-%s", prefix, action)
}

func KeyPair(app string) string {
	return app
}

func SecurityGroup(app string) string {
	return app
}

// Network is the display name of every shared network stack object.
func Network() string {
	return prefix
}

// Profile is the local credential profile the created principal is stored under.
func Profile() string {
	return User()
}
