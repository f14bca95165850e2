package commerce

// GraphQL documents for the Boulevard API. Field selections are trimmed to
// what the booking flow consumes.

const queryLocations = `{
  locations(first: 20) {
    edges {
      node {
        id
        businessName
        name
        allowOnlineBooking
        address {
          city
          state
        }
      }
    }
  }
}`

const queryMembershipPlans = `query membershipPlans {
  membershipPlans(first: 1000) {
    edges {
      node {
        id
        name
        active
        unitPrice
        description
        category {
          id
          name
        }
      }
    }
  }
}`

const mutationCreateCart = `mutation createCart($input: CreateCartInput!) {
  createCart(input: $input) {
    cart {
      id
      expiresAt
      summary {
        subtotal
        taxAmount
        total
      }
      location {
        id
        name
        businessName
      }
    }
  }
}`

const mutationAddItemToCart = `mutation addCartSelectedPurchasableItem($input: AddCartSelectedPurchasableItemInput!) {
  addCartSelectedPurchasableItem(input: $input) {
    cart {
      id
      selectedItems {
        id
      }
    }
  }
}`

const mutationApplyPromotionCode = `mutation addCartOffer($input: AddCartOfferInput!) {
  addCartOffer(input: $input) {
    offer {
      applied
      code
      id
      name
    }
    cart {
      id
      summary {
        discountAmount
        subtotal
        taxAmount
        total
      }
    }
  }
}`

const mutationSetClientOnCart = `mutation updateCart($input: UpdateCartInput!) {
  updateCart(input: $input) {
    cart {
      id
      clientInformation {
        email
        firstName
        lastName
        phoneNumber
      }
      summary {
        subtotal
        taxAmount
        total
      }
    }
  }
}`

const mutationAddCardPaymentMethod = `mutation addCartCardPaymentMethod($input: AddCartCardPaymentMethodInput!) {
  addCartCardPaymentMethod(input: $input) {
    cart {
      id
      summary {
        subtotal
        taxAmount
        total
      }
      clientInformation {
        email
        firstName
        lastName
        phoneNumber
      }
    }
  }
}`

const mutationCheckoutCart = `mutation checkoutCart($id: ID!) {
  checkoutCart(input: { id: $id }) {
    cart {
      id
      clientMessage
      selectedItems {
        id
        lineTotal
        price
        item {
          id
          name
        }
      }
      summary {
        discountAmount
        subtotal
        taxAmount
        total
      }
      clientInformation {
        email
        firstName
        lastName
        phoneNumber
      }
      location {
        id
        name
        businessName
      }
    }
  }
}`

const queryCartSummary = `query cart($id: ID!) {
  cart(id: $id) {
    id
    expiresAt
    selectedItems {
      id
      item {
        id
        name
      }
    }
    summary {
      subtotal
      taxAmount
      total
    }
    location {
      name
      businessName
    }
    clientInformation {
      firstName
      lastName
      email
      phoneNumber
    }
  }
}`
