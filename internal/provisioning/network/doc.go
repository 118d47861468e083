// Package network reconciles the shared quickhost network stack.
//
// One VPC, one public subnet, one internet gateway and one route table per
// account and region, all tagged Name=quickhost. Every app launches into
// this stack. Ensure creates what is missing and repairs broken
// relationships (detached gateway, missing default route, unassociated
// route table); Destroy removes the stack in dependency order.
package network
