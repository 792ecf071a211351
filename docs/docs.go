// Package docs holds the generated swagger spec. Regenerate with:
//
//	swag init -g cmd/shop-api/main.go
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/orders": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Place an order from a finalized cart",
                "parameters": [
                    {
                        "description": "checkout payload",
                        "name": "order",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/CreateOrderRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/CreateOrderResponse"}},
                    "400": {"description": "Bad Request"},
                    "409": {"description": "Conflict"}
                }
            }
        },
        "/payment-intent": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Create a payment authorization intent",
                "responses": {
                    "200": {"description": "OK"},
                    "402": {"description": "Payment Required"}
                }
            }
        },
        "/products": {
            "get": {
                "produces": ["application/json"],
                "summary": "List catalog products",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/orders/{id}/status": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Advance an order one lifecycle step",
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request"},
                    "409": {"description": "Conflict"}
                }
            }
        }
    },
    "definitions": {
        "CreateOrderRequest": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"type": "object"}},
                "totalAmount": {"type": "string", "example": "60.00"},
                "shippingAddress": {"type": "string"},
                "paymentMethod": {"type": "string", "example": "bank_transfer"},
                "paymentIntentId": {"type": "string", "example": "pi_123"}
            }
        },
        "CreateOrderResponse": {
            "type": "object",
            "properties": {
                "orderId": {"type": "string"},
                "orderNumber": {"type": "string"},
                "success": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Jess Collection Shop API",
	Description:      "Storefront and back-office API for the Jess Collection store.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
